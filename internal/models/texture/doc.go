// Package texture models the explicit load status of panorama images: Pending while the image is being
// fetched and decoded, Ready once it can be shown, Failed when it could not be loaded.
package texture
