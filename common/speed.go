package common

// All units are in metric:
// - Speed is in m/s
// - Distance is in meters
// - Time is in seconds

// SpeedOfAnimationMin is the floor on how fast the animated head may move
// when it is catching up to a correction.
const SpeedOfAnimationMin = 2.0

// SpeedOfPlausibleVehicleMax bounds every reported or estimated speed.
// Anything faster is GPS noise or a teleport (180 km/h).
const SpeedOfPlausibleVehicleMax = 50.0
