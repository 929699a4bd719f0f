package main

import (
	"fmt"
	"net/http"

	"machinearena.ai/internal/persistence/indexdb"
	"machinearena.ai/internal/sim/world"
)

// metricsHandler writes a minimal Prometheus exposition.
func metricsHandler(eng *world.Engine, idx *indexdb.SQLiteIndex) http.HandlerFunc {
	worldID := eng.Config().WorldID
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		st := eng.Stats()

		fmt.Fprintf(rw, "# HELP arena_world_version Committed mutation count.\n")
		fmt.Fprintf(rw, "# TYPE arena_world_version counter\n")
		fmt.Fprintf(rw, "arena_world_version{world=%q} %d\n", worldID, st.Version)

		fmt.Fprintf(rw, "# HELP arena_world_entities Current entity count by kind.\n")
		fmt.Fprintf(rw, "# TYPE arena_world_entities gauge\n")
		fmt.Fprintf(rw, "arena_world_entities{world=%q,kind=%q} %d\n", worldID, "machine", st.Machines)
		fmt.Fprintf(rw, "arena_world_entities{world=%q,kind=%q} %d\n", worldID, "obstacle", st.Obstacles)
		fmt.Fprintf(rw, "arena_world_entities{world=%q,kind=%q} %d\n", worldID, "dropped_resource", st.Dropped)
		fmt.Fprintf(rw, "arena_world_entities{world=%q,kind=%q} %d\n", worldID, "carried_resource", st.Carried)

		fmt.Fprintf(rw, "# HELP arena_world_reveal_zones Active reveal zones.\n")
		fmt.Fprintf(rw, "# TYPE arena_world_reveal_zones gauge\n")
		fmt.Fprintf(rw, "arena_world_reveal_zones{world=%q} %d\n", worldID, st.Zones)

		if idx == nil {
			return
		}
		is := idx.Stats()
		fmt.Fprintf(rw, "# HELP arena_index_queue_depth Index writer backlog.\n")
		fmt.Fprintf(rw, "# TYPE arena_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "arena_index_queue_depth %d\n", is.QueueDepth)
		fmt.Fprintf(rw, "# HELP arena_index_dropped_total Index writes dropped on a full queue.\n")
		fmt.Fprintf(rw, "# TYPE arena_index_dropped_total counter\n")
		fmt.Fprintf(rw, "arena_index_dropped_total{kind=%q} %d\n", "action", is.DropActionTotal)
		fmt.Fprintf(rw, "arena_index_dropped_total{kind=%q} %d\n", "snapshot", is.DropSnapshotTotal)
	}
}
