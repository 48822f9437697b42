package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/ruteri/tee-model-workload/model"
)

const resultOK = "ok"

// ModelObserver records model manager outcomes. Failures are labelled with
// their error code, never with error text.
type ModelObserver struct {
	decrypts    *prometheus.CounterVec
	predictions *prometheus.CounterVec
	resets      prometheus.Counter
	loaded      prometheus.Gauge
}

var _ model.Observer = (*ModelObserver)(nil)

// NewModelObserver registers the model collectors with reg.
func NewModelObserver(namespace string, reg prometheus.Registerer) (*ModelObserver, error) {
	o := &ModelObserver{
		decrypts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_decrypt_total",
			Help:      "Model decryption attempts by result.",
		}, []string{"result"}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_predict_total",
			Help:      "Predictions by result.",
		}, []string{"result"}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_reset_total",
			Help:      "Model resets.",
		}),
		loaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_loaded",
			Help:      "1 while a decrypted model is loaded.",
		}),
	}

	for _, c := range []prometheus.Collector{o.decrypts, o.predictions, o.resets, o.loaded} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *ModelObserver) OnDecrypt(err error) {
	o.decrypts.WithLabelValues(result(err)).Inc()
}

// OnPredict labels successful predictions with the predicted class.
func (o *ModelObserver) OnPredict(p model.Prediction, err error) {
	if err != nil {
		o.predictions.WithLabelValues(model.Code(err)).Inc()
		return
	}
	if p == model.Positive {
		o.predictions.WithLabelValues("positive").Inc()
	} else {
		o.predictions.WithLabelValues("negative").Inc()
	}
}

func (o *ModelObserver) OnReset() {
	o.resets.Inc()
}

func (o *ModelObserver) OnState(s model.State) {
	if s == model.Loaded {
		o.loaded.Set(1)
	} else {
		o.loaded.Set(0)
	}
}

func result(err error) string {
	if err == nil {
		return resultOK
	}
	return model.Code(err)
}
