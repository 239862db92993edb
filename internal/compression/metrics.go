package compression

import "github.com/prometheus/client_golang/prometheus"

var (
	writersOpened = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "datasplit_compression_writers_opened_total",
		Help: "Output encoders created, by compression type",
	}, []string{"type"})

	readersOpened = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "datasplit_compression_readers_opened_total",
		Help: "Input decoders created, by compression type",
	}, []string{"type"})
)

func init() {
	prometheus.MustRegister(writersOpened, readersOpened)
}
