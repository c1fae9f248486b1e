// Package common provides core data structures and utilities shared across
// the regionKV RPC stack. It defines the wire envelope, the configuration
// structures and the logging setup used by the other packages.
//
// The package focuses on:
//   - Message protocol definition for client and storage node communication
//   - Configuration structures for client and server components
//   - Custom logging implementation integrated with the Dragonboat logger
//
// Key Components:
//
//   - Message: The envelope for every request and response. Requests carry a
//     RequestContext with the routing information (region, epoch, leader peer).
//     Responses carry either a payload, a RegionError (routing is stale) or a
//     KeyError (routing was right but the data operation failed).
//
//   - MessageType: Enumeration of all supported operations.
//
//   - ServerConfig: Configuration of a storage node (store id, topology file,
//     transport and socket options, metrics endpoint).
//
//   - ClientConfig: Configuration of the client side: the process wide round
//     trip timeout, scan page size, pool capacity and transport options.
//
//   - Logger: Custom logging implementation that plugs into Dragonboat's
//     logger registry and gives every package the same line format.
package common
