// Package exposure estimates scene brightness from the EXIF exposure
// settings of a photo.
//
// A camera in auto exposure picks aperture, shutter time and sensitivity so
// the scene lands at middle gray. The exposure value those settings imply is
// therefore a measure of the light in the scene, and converts to an ambient
// illuminance estimate in lux with the incident-light meter calibration
// constant. Traces can point a capture at the photo the device took instead
// of a recorded light estimate.
package exposure
