// Package chain provides the ordered filter chain the gateway runs for every
// proxied request.
//
// A chain is a list of stages sorted by their numeric order. Each stage
// receives the request exchange and a continuation it calls to hand the
// (possibly replaced) exchange to the next stage. A stage short-circuits the
// chain by returning without calling next. The last continuation is the
// terminal handler, normally the backend dispatcher.
//
// Exchanges are immutable from a stage's point of view: WithRequest and
// WithAttribute return new values and leave the receiver untouched, so a
// stage can never observe a change made further down the chain.
//
//	c := chain.New(dispatcher.Dispatch, routes, interceptor)
//	err := c.Run(chain.NewExchange(w, r))
package chain
