// Package apireq provides the types shared by gateway-aware REST API clients:
// entities, collections, paginators, typed errors, request middleware and
// configuration.
//
// # Overview
//
// Upstream services answer with a JSON envelope of the form
// {"response": <payload>}. The apiclient package dispatches requests, unwraps
// that envelope and hands the payload to Shape, which turns it into one of:
//
//   - *Paginator when the payload carries "meta" (with meta.pagination)
//   - *Collection when the payload is exactly {"data": [...]}
//   - *Entity for any other object
//   - *Raw when the service declares no entity schema
//
// Getting a client
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/apirequests/pkg/apiclient"
//	  "github.com/fivetwenty-io/apirequests/pkg/apireq"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  users := apireq.Service{
//	    Name:   "users",
//	    Prefix: "https://gateway.example.com/users",
//	    Entity: apireq.NewSchema("user").HasMany("roles", apireq.NewSchema("role")),
//	  }
//	  api, err := apiclient.New(&apireq.Config{}, users)
//	  if err != nil { log.Fatal(err) }
//
//	  res, err := api.Get(ctx, "/v1/users", apireq.NewQueryParams().WithPage(2).ToValues())
//	  if err != nil { log.Fatal(err) }
//	  if page, ok := res.(*apireq.Paginator); ok {
//	    log.Println(page.Total(), page.Len())
//	  }
//	}
//
// # Entities
//
// An Entity is an ordered attribute container. Keys keep the order of the
// upstream document, and JSON/YAML encoding writes them back in that order.
// A key may be present with a null value: Has reports presence, IsSet reports
// presence with a non-null value.
//
// # Errors
//
// Failed calls return *HTTPError. Its Kind is one of ErrRequest, ErrAPIClosed,
// ErrResourceNotFound, ErrParameterIllegal, ErrAuth or ErrHTTP and can be
// matched with errors.Is. Malformed bodies produce *DecodeError.
//
// # Middleware
//
// Outgoing requests pass through a chain of Middleware. The first registered
// middleware is the outermost one, so its pre-processing runs first. Gateway
// signing is always registered before caller middleware.
package apireq
