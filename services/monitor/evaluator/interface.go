package evaluator

import "github.com/gr4ytips/anavi-monitoring/services/monitor/common"

// Publisher receives the alert transitions and threshold changes
type Publisher interface {
	Publish(event common.Event)
	IsInterfaceNil() bool
}
