/*
Package store provides the key-value persistence layer used by the node
registries, the route manager, and the topic manager.

It generalizes the fixed-bucket-per-entity BoltDB pattern into a named-table
abstraction: a Store opens Tables by name, and each Table exposes put, get,
delete, truncate, and a forward snapshot cursor. This mirrors the single
embedded key-value database the original master kept one database handle
open for the whole process, with one table per manager:

	service_mgr.services
	route_mgr.routes
	topic_mgr.topics
	topic_mgr.infos

Frontends and backends come from configuration and have no table.

BoltStore is the only implementation; it exists to keep the storage engine
swappable and to keep callers independent of bbolt's own cursor-lifetime
rules (a bbolt Cursor cannot outlive its transaction, so Table.Cursor here
returns a snapshot taken inside a single read transaction).
*/
package store
