package notifier

import (
	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("notifier")

type logNotifier struct {
	log logger.Logger
}

// NewLogNotifier creates a bus handler writing status messages and alert transitions to the logger
func NewLogNotifier() *logNotifier {
	return &logNotifier{
		log: logger.GetOrCreate("alerts"),
	}
}

// Handle logs the event. Informational status lines are logged at debug level since one is emitted
// per sensor on every tick.
func (ln *logNotifier) Handle(event common.Event) {
	switch event.Kind {
	case common.EventStatus:
		if event.Status == nil {
			return
		}
		switch event.Status.Level {
		case common.StatusError:
			ln.log.Error("sensor status", "sensor", event.Status.Sensor, "status", event.Status.Text)
		case common.StatusWarning:
			ln.log.Warn("sensor status", "sensor", event.Status.Sensor, "status", event.Status.Text)
		default:
			ln.log.Debug("sensor status", "sensor", event.Status.Sensor, "status", event.Status.Text)
		}
	case common.EventAlertTransition:
		if event.Transition == nil {
			return
		}
		args := []interface{}{
			"metric", event.Transition.Key.String(),
			"from", event.Transition.From.String(),
			"to", event.Transition.To.String(),
			"value", formatValue(event.Transition.Value),
		}
		if event.Transition.To.IsAlert() {
			ln.log.Warn("alert raised", args...)
			return
		}
		ln.log.Info("alert cleared", args...)
	case common.EventAnyAlertChanged:
		if event.AnyAlert == nil {
			return
		}
		ln.log.Info("any alert active changed", "active", *event.AnyAlert)
	case common.EventThresholdsChanged:
		ln.log.Info("thresholds changed", "sensors", len(event.Thresholds))
	}
}

func formatValue(value *float64) string {
	if value == nil {
		return "n/a"
	}

	return common.FormatValue(*value)
}

// IsInterfaceNil returns true if the value under the interface is nil
func (ln *logNotifier) IsInterfaceNil() bool {
	return ln == nil
}
