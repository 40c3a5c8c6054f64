package control

// historyCapacity bounds the number of samples a controller remembers.
const historyCapacity = 1000

// Sample is one recorded controller step.
type Sample struct {
	Time            float64 `json:"time"`
	Error           float64 `json:"error"`
	Output          float64 `json:"output"`
	Setpoint        float64 `json:"setpoint"`
	ProcessVariable float64 `json:"process_variable"`
}

// sampleRing keeps the most recent samples; once full the oldest is overwritten.
type sampleRing struct {
	buf   []Sample
	start int
	size  int
}

func newSampleRing(capacity int) *sampleRing {
	return &sampleRing{buf: make([]Sample, capacity)}
}

func (r *sampleRing) push(s Sample) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = s
		r.size++
		return
	}
	r.buf[r.start] = s
	r.start = (r.start + 1) % len(r.buf)
}

func (r *sampleRing) len() int {
	return r.size
}

// samples returns a copy ordered oldest to newest.
func (r *sampleRing) samples() []Sample {
	out := make([]Sample, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

func (r *sampleRing) clear() {
	r.start = 0
	r.size = 0
}
