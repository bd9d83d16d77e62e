package common

/*
https://en.wikipedia.org/wiki/Decimal_degrees?useskin=vector

Degree precision versus length
places 	degrees 	at equator
3 	0.001 	111 m
4 	0.0001 	11.1 m
5 	0.00001 	1.11 m
6 	0.000001 	111 mm
*/

const (
	// GPSPrecision5 is the precision for individual trees, houses
	GPSPrecision5 = 5
	// GPSPrecision6 is the precision for individual vehicles
	GPSPrecision6 = 6
)
