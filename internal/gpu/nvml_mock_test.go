package gpu

import "github.com/NVIDIA/go-nvml/pkg/nvml"

// MockDevice is a stand-in for a single NVML device handle in tests.
type MockDevice struct {
	Name             string
	NameReturn       nvml.Return
	UUID             string
	UUIDReturn       nvml.Return
	MemoryTotal      uint64
	MemoryInfoReturn nvml.Return
}

func (d MockDevice) GetName() (string, nvml.Return) {
	return d.Name, d.NameReturn
}

func (d MockDevice) GetUUID() (string, nvml.Return) {
	return d.UUID, d.UUIDReturn
}

func (d MockDevice) GetMemoryInfo() (nvml.Memory, nvml.Return) {
	return nvml.Memory{Total: d.MemoryTotal}, d.MemoryInfoReturn
}

// MockNVML implements NVMLInterface for use in Detector tests. Every field
// defaults to a zero value that reports success with empty data; tests set
// only the fields relevant to the scenario under test.
type MockNVML struct {
	InitReturn        nvml.Return
	ShutdownReturn    nvml.Return
	DriverVersion     string
	DriverReturn      nvml.Return
	CudaVersion       int
	CudaReturn        nvml.Return
	DeviceCount       int
	DeviceCountReturn nvml.Return
	Devices           []MockDevice
	DeviceHandleErr   nvml.Return
}

// NewMockNVML returns a MockNVML preconfigured to succeed on every call.
func NewMockNVML() *MockNVML {
	return &MockNVML{
		InitReturn:        nvml.SUCCESS,
		ShutdownReturn:    nvml.SUCCESS,
		DriverReturn:      nvml.SUCCESS,
		CudaReturn:        nvml.SUCCESS,
		DeviceCountReturn: nvml.SUCCESS,
		DeviceHandleErr:   nvml.SUCCESS,
	}
}

func (m *MockNVML) Init() nvml.Return {
	return m.InitReturn
}

func (m *MockNVML) Shutdown() nvml.Return {
	return m.ShutdownReturn
}

func (m *MockNVML) DeviceGetCount() (int, nvml.Return) {
	if m.DeviceCountReturn != nvml.SUCCESS {
		return 0, m.DeviceCountReturn
	}
	return m.DeviceCount, m.DeviceCountReturn
}

func (m *MockNVML) DeviceGetHandleByIndex(index int) (DeviceInterface, nvml.Return) {
	if m.DeviceHandleErr != nvml.SUCCESS {
		return nil, m.DeviceHandleErr
	}
	if index < 0 || index >= len(m.Devices) {
		return nil, nvml.ERROR_INVALID_ARGUMENT
	}
	return m.Devices[index], nvml.SUCCESS
}

func (m *MockNVML) SystemGetDriverVersion() (string, nvml.Return) {
	return m.DriverVersion, m.DriverReturn
}

func (m *MockNVML) SystemGetCudaDriverVersion() (int, nvml.Return) {
	return m.CudaVersion, m.CudaReturn
}
