package module

// Device is a cached backlight device. Value is the raw brightness, Max the
// raw count for 100%.
type Device struct {
	Name  string
	Value uint64
	Max   uint64
}

// DeviceCache holds devices in first-seen order. Entries are updated in place
// by name and never evicted, so index 0 stays the authoritative device.
type DeviceCache struct {
	devices []Device
}

// Update overwrites the entry called name or appends a new one. It reports
// whether the device was new.
func (c *DeviceCache) Update(name string, value, maxValue uint64) bool {
	for i := range c.devices {
		if c.devices[i].Name == name {
			c.devices[i].Value = value
			c.devices[i].Max = maxValue
			return false
		}
	}
	c.devices = append(c.devices, Device{Name: name, Value: value, Max: maxValue})
	return true
}

// First returns the first-seen device.
func (c *DeviceCache) First() (Device, bool) {
	if len(c.devices) == 0 {
		return Device{}, false
	}
	return c.devices[0], true
}

func (c *DeviceCache) Len() int {
	return len(c.devices)
}

// Devices returns a copy of the cache in order.
func (c *DeviceCache) Devices() []Device {
	return append([]Device(nil), c.devices...)
}
