// Package rpc is the communication layer between region clients and storage
// nodes. A request always targets exactly one region and carries the routing
// context the client believes in, so a storage node can reject stale routing
// before it touches data.
//
// The package is organized into several subpackages:
//
//   - common: The Message protocol (requests, responses, region and key
//     errors), configuration structures and logging setup.
//
//   - serializer: Message serialization with multiple format options (msgpack,
//     JSON, GOB) for converting between Message objects and byte arrays.
//
//   - transport: Network communication abstractions with pluggable
//     implementations (TCP, Unix sockets, HTTP). Frames are addressed by
//     region id.
//
//   - pool: A bounded cache of client transports, one per storage node address,
//     with single-flight dialing.
//
//   - coprocessor: The nested payload of push down requests and its evaluation
//     on a storage node.
//
//   - client: The region store client. It sends one request to one region
//     leader, classifies the outcome and reports routing failures to the
//     region manager.
//
//   - server: A storage node that validates routing and executes requests on a
//     local store.
package rpc
