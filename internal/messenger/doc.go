// Package messenger passes identifier-keyed messages between processes.
//
// A [Messenger] combines a transport, which stores or sends payloads, with a
// change-signal center, which tells other processes that an identifier
// changed. Listeners registered with [Messenger.ListenForMessage] are called
// with the new payload whenever a signal for their identifier arrives.
//
// # Delivery
//
// Signals carry no payload. When one arrives the messenger reads the
// identifier from its transport and, if a payload and a listener both exist,
// calls the listener through its dispatcher. Listeners never run on the
// signal-delivery goroutine. Bursts of writes may produce a single callback
// that sees only the latest payload.
//
// # Usage
//
//	m, err := messenger.New(messenger.Config{
//		GroupIdentifier: "group.dev.wormhole.demo",
//		Directory:       "messenger",
//	})
//	if err != nil { ... }
//	defer m.Close()
//
//	m.ListenForMessage("button", func(payload any) { ... })
//	m.PassMessage(map[string]any{"buttonTitle": "Today"}, "button")
package messenger
