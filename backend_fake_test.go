package aml

import "github.com/any1/aml/backend"

// fakeBackend is a no-op backend.Backend used to exercise the loop core
// without a real readiness engine. It never blocks in Poll and records
// every call so tests can assert on backend interaction directly.
type fakeBackend struct {
	addFDCalls    []int
	delFDCalls    []int
	modFDCalls    []int
	addSignal     []int
	delSignal     []int
	deadlines     []int64
	interrupts    int
	postDispatch  int
	closed        bool
}

func newFakeBackend() *fakeBackend { return &fakeBackend{} }

func (f *fakeBackend) Capabilities() backend.Capability { return 0 }
func (f *fakeBackend) FD() int                          { return -1 }
func (f *fakeBackend) Close() error                     { f.closed = true; return nil }

func (f *fakeBackend) Poll(timeoutMicros int64, e backend.Emitter) (int, error) {
	return -1, nil
}

func (f *fakeBackend) AddFD(fd int, mask backend.EventMask) error {
	f.addFDCalls = append(f.addFDCalls, fd)
	return nil
}
func (f *fakeBackend) ModFD(fd int, mask backend.EventMask) error {
	f.modFDCalls = append(f.modFDCalls, fd)
	return nil
}
func (f *fakeBackend) DelFD(fd int) error {
	f.delFDCalls = append(f.delFDCalls, fd)
	return nil
}

func (f *fakeBackend) AddSignal(signo int) error {
	f.addSignal = append(f.addSignal, signo)
	return nil
}
func (f *fakeBackend) DelSignal(signo int) error {
	f.delSignal = append(f.delSignal, signo)
	return nil
}

func (f *fakeBackend) SetDeadline(absoluteMicros int64) error {
	f.deadlines = append(f.deadlines, absoluteMicros)
	return nil
}

func (f *fakeBackend) Interrupt()     { f.interrupts++ }
func (f *fakeBackend) PostDispatch()  { f.postDispatch++ }
