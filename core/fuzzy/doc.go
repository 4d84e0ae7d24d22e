// Package fuzzy implements Mamdani fuzzy inference over trapezoidal and
// triangular membership functions.
//
// Variables hold ordered terms over a shared universe. A rule base joins one
// term per input variable with AND (minimum) and maps the conjunction to a
// term of the output variable. The engine clips every output term at the
// largest firing strength among its rules, aggregates with maximum and
// defuzzifies the sampled result by centroid or mean of maximum.
package fuzzy
