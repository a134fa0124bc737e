//go:build tools

// Package meetingservice фиксирует в go.mod инструменты для go generate (mockgen).
package meetingservice

import (
	_ "go.uber.org/mock/mockgen"
)
