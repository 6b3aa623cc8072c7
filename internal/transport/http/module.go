package http

import (
	"go.uber.org/fx"

	couriertransport "github.com/Additional-Code/parcel/internal/transport/http/courier"
	deliverytransport "github.com/Additional-Code/parcel/internal/transport/http/delivery"
	filetransport "github.com/Additional-Code/parcel/internal/transport/http/file"
	incidenttransport "github.com/Additional-Code/parcel/internal/transport/http/incident"
	ordertransport "github.com/Additional-Code/parcel/internal/transport/http/order"
	recipienttransport "github.com/Additional-Code/parcel/internal/transport/http/recipient"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	couriertransport.Module,
	recipienttransport.Module,
	filetransport.Module,
	ordertransport.Module,
	deliverytransport.Module,
	incidenttransport.Module,
)
