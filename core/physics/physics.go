// Package physics relates peg rotation to string length, tension and pitch.
//
// Lengths are in meters, turns in revolutions, moduli in pascals, densities in
// kg/m^3 and frequencies in Hz. All functions are pure.
package physics

import (
	"math"
)

// PegRadius is the radius of the tuning peg the string winds around.
const PegRadius = 0.003

// NewLength returns the string length after turning the peg by turns
// revolutions. The string never gets shorter than its untensioned length.
func NewLength(origLength, actualLength, turns float64) float64 {
	return math.Max(origLength, actualLength+2*math.Pi*PegRadius*turns)
}

// Tension follows Hooke's law for a uniform bar.
func Tension(elasticModulus, crossSection, origLength, newLength float64) float64 {
	return elasticModulus * crossSection * (newLength - origLength) / origLength
}

// Frequency follows Mersenne's law for the fundamental of a string.
func Frequency(length, tension, massPerLength float64) float64 {
	return math.Sqrt(tension/massPerLength) / (2 * length)
}

func CrossSection(radius float64) float64 {
	return math.Pi * radius * radius
}

func LinearDensity(density, crossSection float64) float64 {
	return density * crossSection
}

// FrequencyAtLength is the pitch of a string of untensioned length
// origLength stretched to length. The cross-section cancels out.
func FrequencyAtLength(origLength, length, elasticModulus, density float64) float64 {
	stretch := length - origLength
	if stretch <= 0 || elasticModulus <= 0 {
		return 0
	}
	return math.Sqrt(elasticModulus*stretch*length/(density*origLength*origLength)) /
		(2 * origLength)
}

// NewFrequency is the pitch after turning the peg of a string currently
// stretched to actualLength by turns revolutions.
func NewFrequency(origLength, actualLength, turns, elasticModulus, density float64) float64 {
	return FrequencyAtLength(origLength,
		NewLength(origLength, actualLength, turns), elasticModulus, density)
}

// LengthForFrequency inverts FrequencyAtLength: it returns the stretched
// length at which the string sounds at frequency.
func LengthForFrequency(origLength, frequency, elasticModulus, density float64) float64 {
	if frequency <= 0 {
		return origLength
	}
	o2 := origLength * origLength
	return (origLength + math.Sqrt(o2+16*density*frequency*frequency*o2*o2/elasticModulus)) / 2
}
