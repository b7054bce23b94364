package client

// PresentBit is the application-layer convention used by the streaming
// helpers below: bit 8 of a 9-bit bus flags "a new byte is present", set
// alongside the byte's 8 data bits and cleared between bytes so the
// receiving side can edge-detect arrivals. It is not part of the wire
// protocol itself.
const PresentBit = 1 << 8

// StreamBytes drives data onto a named input bus one byte at a time
// using the present/clear convention: each byte is driven with
// PresentBit set for cyclesPerStep subcycles, then cleared for
// cyclesPerStep more before the next byte, giving the receiver a clean
// rising/falling edge to detect.
func (d *Driver) StreamBytes(busName string, data []byte, cyclesPerStep uint32) error {
	for _, b := range data {
		if err := d.SetInputs(map[string]uint64{busName: uint64(b) | PresentBit}); err != nil {
			return err
		}
		if err := d.Step(cyclesPerStep); err != nil {
			return err
		}
		if err := d.SetInputs(map[string]uint64{busName: 0}); err != nil {
			return err
		}
		if err := d.Step(cyclesPerStep); err != nil {
			return err
		}
	}
	return nil
}

// ReceiveBytes samples a named output bus for up to maxBytes arrivals,
// stepping cyclesPerStep subcycles between samples and appending one
// byte each time PresentBit transitions from clear to set (a rising
// edge), mirroring the sender side of the present/clear convention.
func (d *Driver) ReceiveBytes(busName string, maxBytes int, cyclesPerStep uint32, maxSteps int) ([]byte, error) {
	var out []byte
	var wasPresent bool
	for step := 0; len(out) < maxBytes && step < maxSteps; step++ {
		if err := d.Step(cyclesPerStep); err != nil {
			return out, err
		}
		outs, err := d.GetOutputs()
		if err != nil {
			return out, err
		}
		v := outs[busName]
		present := v&PresentBit != 0
		if present && !wasPresent {
			out = append(out, byte(v&0xFF))
		}
		wasPresent = present
	}
	return out, nil
}
