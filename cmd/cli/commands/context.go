package commands

import (
	"context"

	"go.uber.org/zap"

	"github.com/jakechorley/shiftsync/internal/config"
	"github.com/jakechorley/shiftsync/pkg/clients/shiftsclient"
	"github.com/jakechorley/shiftsync/pkg/db"
	"github.com/jakechorley/shiftsync/pkg/postgres"
)

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Cfg      *config.Config
	Database db.Database
	Postgres *postgres.DB
	Client   *shiftsclient.Client
	Logger   *zap.Logger
	Ctx      context.Context
}
