package computer

// SetEnergyInfo sets both the current energy and its capacity in one
// call, matching nn_setEnergyInfo.
func (c *Computer) SetEnergyInfo(energy, capacity float64) {
	c.energy = energy
	c.maxEnergy = capacity
}

// Energy returns the current stored energy.
func (c *Computer) Energy() float64 { return c.energy }

// MaxEnergy returns the energy capacity.
func (c *Computer) MaxEnergy() float64 { return c.maxEnergy }

// RemoveEnergy draws down the stored energy. If the request exceeds what
// is available, energy is zeroed and the computer transitions to
// StateBlackout; no error is set automatically.
func (c *Computer) RemoveEnergy(amount float64) {
	if c.energy < amount {
		c.energy = 0
		c.state = StateBlackout
		return
	}
	c.energy -= amount
}

// AddEnergy deposits energy, clamped at MaxEnergy.
func (c *Computer) AddEnergy(amount float64) {
	if c.maxEnergy-c.energy < amount {
		c.energy = c.maxEnergy
		return
	}
	c.energy += amount
}

// Temperature returns the current temperature.
func (c *Computer) Temperature() float64 { return c.temperature }

// ThermalCoefficient returns the multiplier applied to AddHeat.
func (c *Computer) ThermalCoefficient() float64 { return c.temperatureCoefficient }

// RoomTemperature returns the ambient floor temperature cannot drop
// below.
func (c *Computer) RoomTemperature() float64 { return c.roomTemperature }

// SetTemperature sets the temperature directly, clamped to never go
// below RoomTemperature.
func (c *Computer) SetTemperature(t float64) {
	c.temperature = t
	if c.temperature < c.roomTemperature {
		c.temperature = c.roomTemperature
	}
}

// SetTemperatureCoefficient sets the AddHeat multiplier.
func (c *Computer) SetTemperatureCoefficient(coef float64) {
	c.temperatureCoefficient = coef
}

// SetRoomTemperature sets the ambient floor, also raising the current
// temperature if it would now be below it.
func (c *Computer) SetRoomTemperature(t float64) {
	c.roomTemperature = t
	if c.temperature < c.roomTemperature {
		c.temperature = c.roomTemperature
	}
}

// AddHeat raises the temperature by heat*ThermalCoefficient.
func (c *Computer) AddHeat(heat float64) {
	c.temperature += heat * c.temperatureCoefficient
	if c.temperature < c.roomTemperature {
		c.temperature = c.roomTemperature
	}
}

// RemoveHeat lowers the temperature directly (not scaled by the
// coefficient), clamped at RoomTemperature.
func (c *Computer) RemoveHeat(heat float64) {
	c.temperature -= heat
	if c.temperature < c.roomTemperature {
		c.temperature = c.roomTemperature
	}
}

// IsOverheating reports whether the temperature exceeds OverheatMin.
func (c *Computer) IsOverheating() bool {
	return c.temperature > OverheatMin
}

// SetCallBudget sets the per-tick call-cost ceiling before Overworked
// triggers.
func (c *Computer) SetCallBudget(budget float64) { c.callBudget = budget }

// CallBudget returns the configured call-cost ceiling.
func (c *Computer) CallBudget() float64 { return c.callBudget }

// ChargeCallCost accumulates cost against the current tick's call budget,
// triggering StateOverworked once the accumulated cost reaches the
// budget.
func (c *Computer) ChargeCallCost(cost float64) {
	c.callCost += cost
	if c.callCost >= c.callBudget {
		c.TriggerIndirect()
	}
}

// CallCost returns the call cost accumulated so far this tick.
func (c *Computer) CallCost() float64 { return c.callCost }

// IsOverworked reports whether the computer is in StateOverworked.
func (c *Computer) IsOverworked() bool { return c.state == StateOverworked }

// TriggerIndirect forces StateOverworked, matching nn_triggerIndirect:
// the mechanism a buffered-indirect token bucket uses to signal its
// budget ran out between direct calls.
func (c *Computer) TriggerIndirect() { c.state = StateOverworked }
