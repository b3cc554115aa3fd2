package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
)

var (
	recordsReceived  atomic.Int64
	recordsMapped    atomic.Int64
	bundleEntries    atomic.Int64
	deliveryFailures atomic.Int64
)

var labeledMu sync.Mutex

var (
	rejectedByKind  = map[string]int64{}
	unresolvedCodes = map[string]int64{}
)

func ObserveReceived() {
	recordsReceived.Add(1)
}

func ObserveMapped(entries int) {
	recordsMapped.Add(1)
	bundleEntries.Add(int64(entries))
}

func ObserveRejected(kind string) {
	labeledMu.Lock()
	rejectedByKind[kind]++
	labeledMu.Unlock()
}

func ObserveUnresolvedCode(table string) {
	labeledMu.Lock()
	unresolvedCodes[table]++
	labeledMu.Unlock()
}

func ObserveDeliveryFailure() {
	deliveryFailures.Add(1)
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Received         int64
	Mapped           int64
	BundleEntries    int64
	DeliveryFailures int64
	Rejected         map[string]int64
	Unresolved       map[string]int64
}

func Current() Snapshot {
	labeledMu.Lock()
	defer labeledMu.Unlock()
	return Snapshot{
		Received:         recordsReceived.Load(),
		Mapped:           recordsMapped.Load(),
		BundleEntries:    bundleEntries.Load(),
		DeliveryFailures: deliveryFailures.Load(),
		Rejected:         copyCounts(rejectedByKind),
		Unresolved:       copyCounts(unresolvedCodes),
	}
}

func WritePrometheus(w http.ResponseWriter) {
	snap := Current()
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	fmt.Fprintf(w, "# HELP patho_fhir_records_received_total Number of input records received.\n")
	fmt.Fprintf(w, "# TYPE patho_fhir_records_received_total counter\n")
	fmt.Fprintf(w, "patho_fhir_records_received_total %d\n", snap.Received)

	fmt.Fprintf(w, "# HELP patho_fhir_records_mapped_total Number of input records mapped to a bundle.\n")
	fmt.Fprintf(w, "# TYPE patho_fhir_records_mapped_total counter\n")
	fmt.Fprintf(w, "patho_fhir_records_mapped_total %d\n", snap.Mapped)

	fmt.Fprintf(w, "# HELP patho_fhir_bundle_entries_total Number of bundle entries emitted.\n")
	fmt.Fprintf(w, "# TYPE patho_fhir_bundle_entries_total counter\n")
	fmt.Fprintf(w, "patho_fhir_bundle_entries_total %d\n", snap.BundleEntries)

	fmt.Fprintf(w, "# HELP patho_fhir_delivery_failures_total Number of bundles the sink failed to accept.\n")
	fmt.Fprintf(w, "# TYPE patho_fhir_delivery_failures_total counter\n")
	fmt.Fprintf(w, "patho_fhir_delivery_failures_total %d\n", snap.DeliveryFailures)

	fmt.Fprintf(w, "# HELP patho_fhir_records_rejected_total Number of input records rejected, by error kind.\n")
	fmt.Fprintf(w, "# TYPE patho_fhir_records_rejected_total counter\n")
	for _, kind := range sortedKeys(snap.Rejected) {
		fmt.Fprintf(w, "patho_fhir_records_rejected_total{kind=%q} %d\n", kind, snap.Rejected[kind])
	}

	fmt.Fprintf(w, "# HELP patho_fhir_unresolved_codes_total Number of local strings missing from a mapping table.\n")
	fmt.Fprintf(w, "# TYPE patho_fhir_unresolved_codes_total counter\n")
	for _, table := range sortedKeys(snap.Unresolved) {
		fmt.Fprintf(w, "patho_fhir_unresolved_codes_total{table=%q} %d\n", table, snap.Unresolved[table])
	}
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortedKeys(in map[string]int64) []string {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
