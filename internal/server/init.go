package server

import (
	"github.com/google/wire"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProviderSet exposes the HTTP server and its telemetry for Wire.
var ProviderSet = wire.NewSet(
	NewTelemetry,
	NewHTTPServer,
	wire.Bind(new(Pinger), new(*pgxpool.Pool)),
)
