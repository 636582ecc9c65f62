package reminder

// Device reports whether the process runs somewhere that can show
// notifications to a person. Simulators and CI runners are not physical.
type Device interface {
	IsPhysicalDevice() bool
}

// StaticDevice is a Device with a fixed answer, usually taken from config.
type StaticDevice bool

func (d StaticDevice) IsPhysicalDevice() bool {
	return bool(d)
}
