package classify

import (
	"fmt"
	"os/user"
	"strconv"
	"strings"
	"sync"
)

// OwnerResolver caches uid -> username lookups per process (spec
// §4.1, §9: "the process-wide ... username cache are per-process,
// read-mostly, and recomputed lazily").
type OwnerResolver struct {
	mu    sync.Mutex
	cache map[uint32]string
}

// NewOwnerResolver returns a ready-to-use resolver.
func NewOwnerResolver() *OwnerResolver {
	return &OwnerResolver{cache: make(map[uint32]string)}
}

// Username resolves uid to a username, falling back to
// "__unknown_uid_N__" without raising (spec §4.1, §8 scenario S6).
// Dots in a resolved username are replaced with "__" for the same
// reason file-type tokens are sanitized.
func (r *OwnerResolver) Username(uid uint32) string {
	r.mu.Lock()
	if name, ok := r.cache[uid]; ok {
		r.mu.Unlock()
		return name
	}
	r.mu.Unlock()

	name := lookupUsername(uid)

	r.mu.Lock()
	r.cache[uid] = name
	r.mu.Unlock()
	return name
}

func lookupUsername(uid uint32) string {
	u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10))
	if err != nil {
		return fmt.Sprintf("__unknown_uid_%d__", uid)
	}
	return strings.ReplaceAll(u.Username, ".", "__")
}
