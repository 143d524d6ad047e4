package geo

import (
	"github.com/golang/geo/s2"
)

// GreatCircleDistance returns the great-circle distance in meters between two points on the sphere.
func GreatCircleDistance(latOne, lonOne, latTwo, lonTwo float64) float64 {
	a := s2.LatLngFromDegrees(latOne, lonOne)
	b := s2.LatLngFromDegrees(latTwo, lonTwo)
	return a.Distance(b).Radians() * earthRadiusM
}

// ProjectPointToSegment snaps a point onto the segment (pointA, pointB) and returns the projection.
func ProjectPointToSegment(pointA, pointB, snap Coordinate) Coordinate {
	pointAS2 := s2.PointFromLatLng(s2.LatLngFromDegrees(pointA.Lat, pointA.Lon))
	pointBS2 := s2.PointFromLatLng(s2.LatLngFromDegrees(pointB.Lat, pointB.Lon))
	snapS2 := s2.PointFromLatLng(s2.LatLngFromDegrees(snap.Lat, snap.Lon))
	if pointAS2.ApproxEqual(pointBS2) {
		return pointA
	}
	projection := s2.Project(snapS2, pointAS2, pointBS2)
	projectLatLng := s2.LatLngFromPoint(projection)
	return NewCoordinate(projectLatLng.Lat.Degrees(), projectLatLng.Lng.Degrees())
}

// PointSegmentDistance. distance in meters from snap to its projection on segment (pointA, pointB)
func PointSegmentDistance(pointA, pointB, snap Coordinate) float64 {
	projectionPoint := ProjectPointToSegment(pointA, pointB, snap)
	return GreatCircleDistance(snap.Lat, snap.Lon, projectionPoint.Lat, projectionPoint.Lon)
}
