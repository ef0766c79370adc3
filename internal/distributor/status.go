package distributor

import (
	"sort"

	"gridd/pkg/types"
)

// Status reports the aggregate over all registered nodes, reservations
// included.
func (d *Distributor) Status() types.DistributorStatus {
	nodes := d.Nodes()
	hasCapacity := false
	for _, n := range nodes {
		if n.HasCapacity() {
			hasCapacity = true
			break
		}
	}
	return types.DistributorStatus{
		HasCapacity: hasCapacity,
		Nodes:       nodes,
	}
}

func sortNodeStatuses(nodes []types.NodeStatus) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].NodeID < nodes[j].NodeID })
}
