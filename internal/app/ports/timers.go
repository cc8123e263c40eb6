package ports

import "time"

type TimersPort interface {
	AddTimer(id string, interval time.Duration, repeat bool, task func())
	RemoveTimer(id string)
}
