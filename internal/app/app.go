package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/parcel/internal/cache"
	"github.com/Additional-Code/parcel/internal/clock"
	"github.com/Additional-Code/parcel/internal/config"
	"github.com/Additional-Code/parcel/internal/database"
	"github.com/Additional-Code/parcel/internal/logger"
	"github.com/Additional-Code/parcel/internal/mail"
	"github.com/Additional-Code/parcel/internal/messaging"
	"github.com/Additional-Code/parcel/internal/notification"
	"github.com/Additional-Code/parcel/internal/observability"
	repositorycourier "github.com/Additional-Code/parcel/internal/repository/courier"
	repositoryfile "github.com/Additional-Code/parcel/internal/repository/file"
	repositoryincident "github.com/Additional-Code/parcel/internal/repository/incident"
	repositoryorder "github.com/Additional-Code/parcel/internal/repository/order"
	repositoryrecipient "github.com/Additional-Code/parcel/internal/repository/recipient"
	grpcserver "github.com/Additional-Code/parcel/internal/server/grpc"
	httpserver "github.com/Additional-Code/parcel/internal/server/http"
	servicecourier "github.com/Additional-Code/parcel/internal/service/courier"
	servicefile "github.com/Additional-Code/parcel/internal/service/file"
	serviceincident "github.com/Additional-Code/parcel/internal/service/incident"
	serviceorder "github.com/Additional-Code/parcel/internal/service/order"
	"github.com/Additional-Code/parcel/internal/service/quota"
	servicerecipient "github.com/Additional-Code/parcel/internal/service/recipient"
	transporthttp "github.com/Additional-Code/parcel/internal/transport/http"
	"github.com/Additional-Code/parcel/internal/worker"
	workernotification "github.com/Additional-Code/parcel/internal/worker/notification"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	clock.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	repositorycourier.Module,
	repositoryfile.Module,
	repositoryincident.Module,
	repositoryorder.Module,
	repositoryrecipient.Module,
	notification.Module,
	quota.Module,
	servicecourier.Module,
	servicefile.Module,
	serviceincident.Module,
	serviceorder.Module,
	servicerecipient.Module,
)

// HTTP wires the HTTP transport on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background notification processing.
var Worker = fx.Options(
	Core,
	mail.Module,
	worker.Module,
	workernotification.Module,
)

// Module is the default application wiring (HTTP and gRPC health).
var Module = HTTP
