// Package msredis provides an embeddable in-memory Redis-compatible server.
//
// An Instance owns a sharded keyspace (strings and sorted sets), a Lua
// scripting engine and a RESP server that standard Redis clients can talk
// to.
//
// Basic usage:
//
//	inst, err := msredis.New(
//		msredis.WithAddr(":6379"),
//		msredis.WithPassword("secret"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer inst.Close()
//
//	if err := inst.Start(context.Background()); err != nil {
//		log.Fatal(err)
//	}
//
// The keyspace can also be used directly, without going through the network:
//
//	db, _ := inst.Storage().DB(0)
//	db.ZAdd("board", storage.ZAddOptions{}, storage.ZMember{Member: []byte("alice"), Score: 10})
//
// Configuration can be loaded from YAML with LoadConfig; the resulting
// FileConfig converts into the same functional options.
package msredis
