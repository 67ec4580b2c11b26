package msredis

// Version is the current version of the msredis library.
const Version = "0.3.0"

// RedisVersion is the Redis version reported to clients by INFO
const RedisVersion = "7.2.0"

// GitCommit is the git commit hash (set by build flags)
var GitCommit string

// BuildTime is the build timestamp (set by build flags)
var BuildTime string

// VersionInfo returns detailed version information
func VersionInfo() map[string]string {
	info := map[string]string{
		"version":       Version,
		"redis_version": RedisVersion,
	}

	if GitCommit != "" {
		info["commit"] = GitCommit
	}

	if BuildTime != "" {
		info["buildTime"] = BuildTime
	}

	return info
}
