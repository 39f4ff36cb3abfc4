// Package geo provides the small amount of spherical geometry the pipeline
// needs: great-circle distance and kilometer-to-degree offsets.
package geo

import "math"

// earthRadiusKM is the mean Earth radius used for haversine distances.
const earthRadiusKM = 6371.0

// kmPerDegreeLat is the approximate north-south distance of one degree of
// latitude. East-west distance shrinks with the cosine of the latitude.
const kmPerDegreeLat = 111.0

// HaversineKM returns the great-circle distance in kilometers between two
// points given in decimal degrees.
func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKM * c
}

// Offset translates a point by the given north and east distances in
// kilometers. The longitude conversion accounts for latitude convergence.
func Offset(lat, lon, northKM, eastKM float64) (float64, float64) {
	dLat := northKM / kmPerDegreeLat
	dLon := eastKM / (kmPerDegreeLat * math.Cos(lat*math.Pi/180))
	return lat + dLat, lon + dLon
}
