package poller

import "errors"

var errNilDriverFactory = errors.New("nil driver factory")

var errNilPublisher = errors.New("nil publisher")

var errNilDriver = errors.New("nil sensor driver")

var errDriverPanic = errors.New("sensor driver panicked")
