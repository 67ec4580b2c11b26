// Package client is a minimal RESP2 client for msredis and compatible
// servers.
//
// A Client owns one connection and serialises requests on it:
//
//	c, err := client.Dial(ctx, "127.0.0.1:6379")
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//	reply, err := c.Do(ctx, "ZADD", "board", "10", "alice")
//
// A Pool shares a bounded set of connections between goroutines. Pooled
// connections are checked with PING when borrowed.
package client
