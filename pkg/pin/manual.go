package pin

// ManualAnalog is a hand-driven AnalogInput for tests and the simulator.
// Not safe for concurrent use; drive it from the block's control loop.
type ManualAnalog struct {
	sample AnalogSample
	err    error
}

// NewManualAnalog returns a manual pin measuring raw with StatusOK.
func NewManualAnalog(raw int32) *ManualAnalog {
	return &ManualAnalog{sample: AnalogSample{Raw: raw, Status: StatusOK}}
}

// Set updates the measured raw value.
func (m *ManualAnalog) Set(raw int32) {
	m.sample.Raw = raw
}

// SetStatus updates the electrical diagnosis.
func (m *ManualAnalog) SetStatus(status Status) {
	m.sample.Status = status
}

// Fail makes every following Sample call return err. Pass nil to recover.
func (m *ManualAnalog) Fail(err error) {
	m.err = err
}

// Sample returns the current manual reading.
func (m *ManualAnalog) Sample() (AnalogSample, error) {
	if m.err != nil {
		return AnalogSample{}, m.err
	}
	return m.sample, nil
}

// ManualTimer is a hand-driven TimerInput for tests and the simulator.
// Queued periods drain through a CaptureDepth-deep FIFO, mirroring the
// capture hardware. Not safe for concurrent use.
type ManualTimer struct {
	queue        []uint32
	frequency    uint32
	inputVoltage uint16
	status       Status
	err          error
}

// NewManualTimer returns a manual timer pin with no queued samples.
func NewManualTimer() *ManualTimer {
	return &ManualTimer{status: StatusOK}
}

// Push queues period samples for the following captures.
func (m *ManualTimer) Push(periods ...uint32) {
	m.queue = append(m.queue, periods...)
}

// SetFrequency sets the hardware-measured frequency in Hz.
func (m *ManualTimer) SetFrequency(hz uint32) {
	m.frequency = hz
}

// SetInputVoltage sets the comparator voltage in mV.
func (m *ManualTimer) SetInputVoltage(mv uint16) {
	m.inputVoltage = mv
}

// SetStatus updates the electrical diagnosis.
func (m *ManualTimer) SetStatus(status Status) {
	m.status = status
}

// Fail makes every following Capture call return err. Pass nil to recover.
func (m *ManualTimer) Fail(err error) {
	m.err = err
}

// Capture drains up to CaptureDepth queued periods.
func (m *ManualTimer) Capture() (TimerCapture, error) {
	if m.err != nil {
		return TimerCapture{}, m.err
	}
	n := len(m.queue)
	if n > CaptureDepth {
		n = CaptureDepth
	}
	periods := make([]uint32, n)
	copy(periods, m.queue[:n])
	m.queue = m.queue[n:]
	return TimerCapture{
		Periods:      periods,
		Frequency:    m.frequency,
		InputVoltage: m.inputVoltage,
		Status:       m.status,
	}, nil
}

// Compile-time interface satisfaction checks.
var (
	_ AnalogInput = (*ManualAnalog)(nil)
	_ TimerInput  = (*ManualTimer)(nil)
)
