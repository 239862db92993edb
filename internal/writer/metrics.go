package writer

import "github.com/prometheus/client_golang/prometheus"

var (
	rowsDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "datasplit_rows_dispatched_total",
		Help: "Rows handed to a split router",
	}, []string{"split"})

	dispatchBlocked = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "datasplit_dispatch_blocked_total",
		Help: "Sends that found the chunk channel full and had to wait",
	}, []string{"split"})

	rowsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "datasplit_rows_written_total",
		Help: "Data rows persisted by chunk writers, excluding headers",
	}, []string{"split"})

	chunkFilesOpened = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "datasplit_chunk_files_opened_total",
		Help: "Chunk files created",
	}, []string{"split"})

	chunkRotations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "datasplit_chunk_rotations_total",
		Help: "Chunk writers that moved to a new file after reaching the chunk size",
	}, []string{"split"})

	writerErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "datasplit_writer_errors_total",
		Help: "Chunk writers that stopped with an error",
	}, []string{"split"})
)

func init() {
	prometheus.MustRegister(
		rowsDispatched,
		dispatchBlocked,
		rowsWritten,
		chunkFilesOpened,
		chunkRotations,
		writerErrors,
	)
}
