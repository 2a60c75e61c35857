package common

import (
	"github.com/apex/log"
)

// Component base structure for a component
type Component struct {
	LogTags log.Fields
}
