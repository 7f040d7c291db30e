// Package http provides Laravel-style request and response helpers used by
// the bridge's HTTP endpoints.
//
// # Request
//
//	req := gohttp.NewRequest(r)
//
//	prefix := req.Query("prefix")
//	key    := req.RouteParam("*")   // requires Chi router
//	token  := req.BearerToken()     // Authorization: Bearer <token>
//	id     := req.Header("X-Bridge-Call-Id")
//	req.IsJSON()                    // Content-Type: application/json
//
// RequireBearer and RequireJSON guard a route group:
//
//	r.Group(func(r *routing.Router) {
//	    r.Middleware(gohttp.RequireBearer(secret))
//	    r.Post("/_actions", gohttp.RequireJSON(rpcServer).ServeHTTP)
//	})
//
// # Response
//
//	res := gohttp.NewResponse(w)
//
//	res.Success(data)               // 200 {"data": ...}
//	res.Error(415, "got %q", ct)    // {"message": "got \"text/plain\""}
//	res.Unauthorized()              // 401 {"message": "Unauthenticated."}
//	res.NotFound("Token")           // 404 {"message": "Token not found."}
//	res.ValidationError(errs)       // 422 {"errors": {"field": ["msg"]}}
package http
