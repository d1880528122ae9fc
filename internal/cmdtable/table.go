// Package cmdtable is the proxy's static command metadata registry: for
// each supported command name, where its keys live in the argument
// vector and how many arguments it takes. Grounded on the registration
// pattern in chuimengdaoxizhou-go-redis/database/command.go (a
// name->metadata map built at init time) and on Redis's own command
// table semantics (first_key_index/last_key_index/key_step) referenced
// throughout _examples/original_source/src/proxy.c's getRequestNode.
package cmdtable

import "strings"

// Command describes one command's key-position and arity metadata.
type Command struct {
	Name string

	// FirstKey is the 1-based index of the first key argument, 0 if the
	// command has no key (e.g. PING, INFO).
	FirstKey int
	// LastKey is the 1-based index of the last key argument; negative
	// values count from the end of the argument vector (e.g. -1 means
	// "the last argument", used by MSET-like variadic commands).
	LastKey int
	// KeyStep is the spacing between successive keys (2 for MSET-style
	// key/value pairs, 1 otherwise).
	KeyStep int
	// Arity is the expected argument count including the command name
	// itself; negative means "at least abs(Arity)".
	Arity int

	// Unsupported commands (transactions, Pub/Sub, scripting, cluster
	// management, blocking commands) are rejected outright: batching,
	// cross-slot awareness or server-held state they'd require are all
	// explicit spec Non-goals.
	Unsupported bool
}

var table = map[string]Command{
	// No-key commands: routed to any shard (spec.md §4.2).
	"ping":   {Name: "PING", Arity: -1},
	"echo":   {Name: "ECHO", Arity: 2},
	"info":   {Name: "INFO", Arity: -1},
	"time":   {Name: "TIME", Arity: 1},
	"dbsize": {Name: "DBSIZE", Arity: 1},
	"command": {Name: "COMMAND", Arity: -1},

	// Single-key commands.
	"get":       {Name: "GET", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: 2},
	"set":       {Name: "SET", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: -3},
	"setnx":     {Name: "SETNX", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: 3},
	"setex":     {Name: "SETEX", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: 4},
	"psetex":    {Name: "PSETEX", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: 4},
	"append":    {Name: "APPEND", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: 3},
	"strlen":    {Name: "STRLEN", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: 2},
	"incr":      {Name: "INCR", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: 2},
	"decr":      {Name: "DECR", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: 2},
	"incrby":    {Name: "INCRBY", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: 3},
	"decrby":    {Name: "DECRBY", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: 3},
	"incrbyfloat": {Name: "INCRBYFLOAT", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: 3},
	"getset":    {Name: "GETSET", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: 3},
	"getdel":    {Name: "GETDEL", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: 2},
	"del":       {Name: "DEL", FirstKey: 1, LastKey: -1, KeyStep: 1, Arity: -2},
	"unlink":    {Name: "UNLINK", FirstKey: 1, LastKey: -1, KeyStep: 1, Arity: -2},
	"exists":    {Name: "EXISTS", FirstKey: 1, LastKey: -1, KeyStep: 1, Arity: -2},
	"expire":    {Name: "EXPIRE", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: -3},
	"pexpire":   {Name: "PEXPIRE", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: -3},
	"ttl":       {Name: "TTL", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: 2},
	"pttl":      {Name: "PTTL", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: 2},
	"persist":   {Name: "PERSIST", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: 2},
	"type":      {Name: "TYPE", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: 2},

	"lpush":  {Name: "LPUSH", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: -3},
	"rpush":  {Name: "RPUSH", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: -3},
	"lpop":   {Name: "LPOP", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: -2},
	"rpop":   {Name: "RPOP", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: -2},
	"llen":   {Name: "LLEN", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: 2},
	"lrange": {Name: "LRANGE", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: 4},
	"lindex": {Name: "LINDEX", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: 3},

	"hset":    {Name: "HSET", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: -4},
	"hget":    {Name: "HGET", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: 3},
	"hdel":    {Name: "HDEL", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: -3},
	"hgetall": {Name: "HGETALL", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: 2},
	"hexists": {Name: "HEXISTS", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: 3},
	"hlen":    {Name: "HLEN", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: 2},

	"sadd":      {Name: "SADD", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: -3},
	"srem":      {Name: "SREM", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: -3},
	"sismember": {Name: "SISMEMBER", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: 3},
	"smembers":  {Name: "SMEMBERS", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: 2},
	"scard":     {Name: "SCARD", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: 2},

	"zadd":   {Name: "ZADD", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: -4},
	"zrange": {Name: "ZRANGE", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: -4},
	"zscore": {Name: "ZSCORE", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: 3},
	"zrem":   {Name: "ZREM", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: -3},
	"zcard":  {Name: "ZCARD", FirstKey: 1, LastKey: 1, KeyStep: 1, Arity: 2},

	// Multi-key, same key_step 1 commands (all keys must resolve to the
	// same shard, spec.md §4.2).
	"mget": {Name: "MGET", FirstKey: 1, LastKey: -1, KeyStep: 1, Arity: -2},

	// Multi-key, key_step 2 commands (key/value pairs).
	"mset":   {Name: "MSET", FirstKey: 1, LastKey: -1, KeyStep: 2, Arity: -3},
	"msetnx": {Name: "MSETNX", FirstKey: 1, LastKey: -1, KeyStep: 2, Arity: -3},

	// Explicitly unsupported: transactions/batching, Pub/Sub, scripting,
	// cluster management and blocking commands all require state or
	// semantics this proxy's Non-goals exclude (spec.md §1).
	"multi":      {Name: "MULTI", Unsupported: true},
	"exec":       {Name: "EXEC", Unsupported: true},
	"discard":    {Name: "DISCARD", Unsupported: true},
	"watch":      {Name: "WATCH", Unsupported: true},
	"subscribe":  {Name: "SUBSCRIBE", Unsupported: true},
	"publish":    {Name: "PUBLISH", Unsupported: true},
	"eval":       {Name: "EVAL", Unsupported: true},
	"evalsha":    {Name: "EVALSHA", Unsupported: true},
	"cluster":    {Name: "CLUSTER", Unsupported: true},
	"blpop":      {Name: "BLPOP", Unsupported: true},
	"brpop":      {Name: "BRPOP", Unsupported: true},
	"wait":       {Name: "WAIT", Unsupported: true},
	"select":     {Name: "SELECT", Unsupported: true},
}

// Lookup returns the metadata for name (case-insensitive) and whether it
// is known at all; an unknown command is distinct from a known-but-
// unsupported one so the router can flag each case separately
// (Request.UnknownCmd vs Request.Unsupported). The scheduler answers
// both with the same "Unsupported command" error.
func Lookup(name []byte) (Command, bool) {
	cmd, ok := table[strings.ToLower(string(name))]
	return cmd, ok
}

// ResolvedLastKey returns the concrete 0-based last-key argument index
// for a request with argc arguments (LastKey may be negative, counting
// from the end, per Redis's own command-table convention).
func (c Command) ResolvedLastKey(argc int) int {
	last := c.LastKey
	if last < 0 {
		last = argc + last
	}
	if last > argc-1 {
		last = argc - 1
	}
	return last
}

// HasKeys reports whether this command carries at least one key
// argument.
func (c Command) HasKeys() bool {
	return c.FirstKey > 0
}
