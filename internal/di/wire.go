//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"SignalSim/pkg/config"
	applogger "SignalSim/pkg/logger"
	"SignalSim/pkg/server"
)

// InitializeApp wires every dependency. The returned cleanup closes clients
// in reverse order of construction.
func InitializeApp(cfg *config.Config, l *applogger.Logger) (*server.App, func(), error) {
	wire.Build(InfraSet, AppSet)
	return nil, nil, nil
}
