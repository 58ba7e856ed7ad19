// Package apiclient is the entry point for building service clients.
//
// A client is bound to one upstream service. Relative call paths are joined
// to the service prefix, responses are unwrapped from their {"response": ...}
// envelope and shaped into entities, collections or paginators.
//
// Quick start
//
//	import (
//	  "context"
//	  "log"
//	  "net/url"
//
//	  "github.com/fivetwenty-io/apirequests/pkg/apiclient"
//	  "github.com/fivetwenty-io/apirequests/pkg/apireq"
//	)
//
//	func example() {
//	  ctx := context.Background()
//
//	  cfg := &apireq.Config{
//	    Gateway: apireq.GatewayConfig{
//	      Enabled:   true,
//	      URL:       "https://gateway.example.com",
//	      Prefix:    "micro",
//	      AppID:     "app-id",
//	      AppSecret: "app-secret",
//	    },
//	    Services: map[string]apireq.ServiceConfig{
//	      "users": {Prefix: "https://users.example.com/api", Entity: "user"},
//	    },
//	  }
//
//	  users, err := apiclient.NewFromConfig(ctx, cfg, "users")
//	  if err != nil { log.Fatal(err) }
//
//	  result, err := users.Get(ctx, "users", url.Values{"page": {"1"}})
//	  if apireq.IsNotFound(err) {
//	    // result_code 200002
//	  }
//
//	  if page, ok := result.(*apireq.Paginator); ok {
//	    log.Println(page.Total(), page.LastPage())
//	  }
//	}
//
// Gateway signing
//
// With the gateway enabled every request carries an access_token query
// parameter obtained from {gateway.url}/{prefix}/oauth2/token. A request
// rejected with invalid_token is re-sent once with a refreshed token.
//
// Use a Registry when several services share gateway credentials; it keeps
// one token manager per credential set and one token store connection.
package apiclient
