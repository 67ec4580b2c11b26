package main

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/msredis/msredis/client"
)

// dbStats is one line of the INFO keyspace section
type dbStats struct {
	keys    int64
	expires int64
	avgTTL  int64
}

type keyspaceInfo map[int]dbStats

var dbLine = regexp.MustCompile(`^db(\d+):keys=(\d+),expires=(\d+)(?:,avg_ttl=(\d+))?`)

func fetchKeyspace(ctx context.Context, addr, password string) (keyspaceInfo, error) {
	c, err := client.Dial(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	defer func() { _ = c.Close() }()

	if password != "" {
		if err := c.Auth(ctx, password); err != nil {
			return nil, fmt.Errorf("auth %s: %w", addr, err)
		}
	}
	reply, err := c.Do(ctx, "INFO", "keyspace")
	if err != nil {
		return nil, fmt.Errorf("INFO on %s: %w", addr, err)
	}
	if err := reply.Err(); err != nil {
		return nil, fmt.Errorf("INFO on %s: %w", addr, err)
	}
	return parseKeyspace(reply.Text()), nil
}

func parseKeyspace(info string) keyspaceInfo {
	ks := make(keyspaceInfo)
	for _, line := range strings.Split(info, "\n") {
		m := dbLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		db, _ := strconv.Atoi(m[1])
		var st dbStats
		st.keys, _ = strconv.ParseInt(m[2], 10, 64)
		st.expires, _ = strconv.ParseInt(m[3], 10, 64)
		if m[4] != "" {
			st.avgTTL, _ = strconv.ParseInt(m[4], 10, 64)
		}
		ks[db] = st
	}
	return ks
}

// compareKeyspaces prints per-database differences between a reference
// server and the server under test and returns how many were found.
// avg_ttl differences are reported but not counted.
func compareKeyspaces(ctx context.Context, w io.Writer, refAddr, sutAddr, password string, filter map[int]bool) (int, error) {
	ref, err := fetchKeyspace(ctx, refAddr, password)
	if err != nil {
		return 0, err
	}
	sut, err := fetchKeyspace(ctx, sutAddr, password)
	if err != nil {
		return 0, err
	}
	return diffKeyspaces(w, ref, sut, filter), nil
}

func diffKeyspaces(w io.Writer, ref, sut keyspaceInfo, filter map[int]bool) int {
	seen := make(map[int]bool)
	var dbs []int
	for _, ks := range []keyspaceInfo{ref, sut} {
		for db := range ks {
			if (filter == nil || filter[db]) && !seen[db] {
				seen[db] = true
				dbs = append(dbs, db)
			}
		}
	}
	sort.Ints(dbs)

	differences := 0
	for _, db := range dbs {
		r, inRef := ref[db]
		s, inSut := sut[db]
		switch {
		case !inRef:
			fmt.Fprintf(w, "db%d: only on server under test: %s\n", db, s)
			differences++
		case !inSut:
			fmt.Fprintf(w, "db%d: only on reference: %s\n", db, r)
			differences++
		default:
			if r.keys != s.keys {
				fmt.Fprintf(w, "db%d: keys differ: ref=%d sut=%d\n", db, r.keys, s.keys)
				differences++
			}
			if r.expires != s.expires {
				fmt.Fprintf(w, "db%d: expires differ: ref=%d sut=%d\n", db, r.expires, s.expires)
				differences++
			}
			if r.avgTTL != s.avgTTL {
				fmt.Fprintf(w, "db%d: avg_ttl differs: ref=%d sut=%d\n", db, r.avgTTL, s.avgTTL)
			}
			if r.keys == s.keys && r.expires == s.expires {
				fmt.Fprintf(w, "db%d: match %s\n", db, r)
			}
		}
	}

	if differences == 0 {
		fmt.Fprintln(w, "no differences")
	} else {
		fmt.Fprintf(w, "%d differences\n", differences)
	}
	return differences
}

func (s dbStats) String() string {
	return fmt.Sprintf("keys=%d,expires=%d,avg_ttl=%d", s.keys, s.expires, s.avgTTL)
}
