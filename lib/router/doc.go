// Package router routes SNAC requests to the connection that serves their
// family.
//
// A family is unbound, pending or bound. Sending a request for an unbound
// family marks it pending, queues the request and asks the primary (BOS)
// connection for a service redirect. When the service connection reports
// ready its families become bound and their queued requests are sent in
// the order they were queued.
//
//	m := router.New(bos)
//	m.ServiceReady(serverFamilies, bos)
//	m.Send(snac.NewRequest(&search.ByEmail{Email: "a@b.c"})) // queued until the search service is up
package router
