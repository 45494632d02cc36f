// Package httpsse implements channel.Broker over plain HTTP: messages are
// published with a POST to a webhook and received from a Server-Sent Events
// stream.
//
// # Publishing
//
// Publish sends the channel.Message as a JSON body. When an auth token is
// configured every request carries "Authorization: Bearer <token>". Unlike
// the daemon and Redis transports, a failed publish is returned to the
// caller as an error wrapping ErrPublishFailed, since the target URL is
// explicit configuration.
//
// # Subscribing
//
// Each subscribed channel keeps one GET request open against
// {streamURL}?channel=<name>. Events of type "message" or "channel" are
// decoded as channel.Message and handed to the channel's handlers when
// msg.Channel equals the subscribed name, or for every message when the
// subscription is "*". Other wildcard patterns are not supported by this
// transport.
//
// When a stream ends for any reason other than unsubscribing it is re-opened
// after a fixed delay (DefaultReconnectDelay). Malformed events are dropped;
// with WithMalformedLimit a run of them forces a reconnect.
//
// # Relay
//
// Relay is a ready-made server for this protocol backed by any broker,
// in-memory by default:
//
//	relay := httpsse.NewRelay(httpsse.WithRelayToken(token))
//	srv := &http.Server{Addr: ":8080", Handler: relay}
//
//	broker, _ := httpsse.New(
//		httpsse.WithURL("http://localhost:8080/"),
//		httpsse.WithAuthToken(token),
//	)
package httpsse
