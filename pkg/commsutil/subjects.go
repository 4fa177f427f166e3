package commsutil

import (
	"fmt"
	"strings"
)

// Default COMMS subjects.
const (
	SubjectRPC             = "portal.jsonrpc"
	SubjectPeersDiscovered = "portal.peers.discovered"
)

// BuildPeersSubject builds the per-subnetwork peer discovery subject. Dots in
// the subnetwork name would add subject tokens, so they are replaced.
func BuildPeersSubject(subnetwork string) string {
	safe := strings.ReplaceAll(subnetwork, ".", "_")
	return fmt.Sprintf("%s.%s", SubjectPeersDiscovered, safe)
}
