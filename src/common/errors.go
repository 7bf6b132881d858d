package common

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind identifies a class of image error
type ErrorKind string

const (
	KindExpectedImage                      ErrorKind = "ExpectedImage"
	KindLocalImageUsedWrongly              ErrorKind = "LocalImageUsedWrongly"
	KindMissingImageDimension              ErrorKind = "MissingImageDimension"
	KindInvalidImageDimension              ErrorKind = "InvalidImageDimension"
	KindUnsupportedImageFormat             ErrorKind = "UnsupportedImageFormat"
	KindUnsupportedImageConversion         ErrorKind = "UnsupportedImageConversion"
	KindIncompatibleDescriptorOptions      ErrorKind = "IncompatibleDescriptorOptions"
	KindInvalidImageDensity                ErrorKind = "InvalidImageDensity"
	KindInvalidImageQuality                ErrorKind = "InvalidImageQuality"
	KindRemoteImageNotAllowed              ErrorKind = "RemoteImageNotAllowed"
	KindImageNotFound                      ErrorKind = "ImageNotFound"
	KindFailedToFetchRemoteImageDimensions ErrorKind = "FailedToFetchRemoteImageDimensions"
	KindNoImageMetadata                    ErrorKind = "NoImageMetadata"
	KindImageTooLarge                      ErrorKind = "ImageTooLarge"
)

// Error is the error object returned for invalid image usage.
// Title is a short human summary, Hint tells the site author how to fix it.
type Error struct {
	Kind    ErrorKind
	Title   string
	Message string
	Hint    string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err (or anything it wraps) is an *Error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or "" if it is not an image error
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func NewExpectedImageError(src string) *Error {
	return &Error{
		Kind:    KindExpectedImage,
		Title:   "Expected src to be an image.",
		Message: fmt.Sprintf("expected src to be a local image or a remote/public path, received %q", src),
		Hint:    "Pass image metadata for local images or a full URL or root-relative path for remote ones.",
	}
}

func NewLocalImageUsedWronglyError(src string) *Error {
	return &Error{
		Kind:    KindLocalImageUsedWrongly,
		Title:   "Local images must be imported.",
		Message: fmt.Sprintf("image %q is a local file path, not a public path or URL", src),
		Hint:    "Use probed image metadata for files under the source directory, or a path starting with /.",
	}
}

// NewMissingImageDimensionError names the missing dimension: "both", "width" or "height"
func NewMissingImageDimensionError(missing, src string) *Error {
	msg := fmt.Sprintf("missing %s for image %s", missing, src)
	if missing == "both" {
		msg = fmt.Sprintf("missing width and height attributes for %s", src)
	}
	return &Error{
		Kind:    KindMissingImageDimension,
		Title:   "Missing image dimensions",
		Message: msg,
		Hint:    "Remote images need both width and height, or set infer_size to probe them.",
	}
}

func NewInvalidImageDimensionError(name string, value int) *Error {
	return &Error{
		Kind:    KindInvalidImageDimension,
		Title:   "Invalid image dimension",
		Message: fmt.Sprintf("%s must not be negative, got %d", name, value),
	}
}

func NewUnsupportedImageFormatError(format, src string, supported []string) *Error {
	return &Error{
		Kind:    KindUnsupportedImageFormat,
		Title:   "Unsupported image format",
		Message: fmt.Sprintf("received unsupported format %q from %q", format, src),
		Hint:    "Supported formats are " + strings.Join(supported, ", ") + ".",
	}
}

func NewUnsupportedImageConversionError(from, to string) *Error {
	return &Error{
		Kind:    KindUnsupportedImageConversion,
		Title:   "Unsupported image conversion",
		Message: fmt.Sprintf("converting between vector (svg) and raster images is not supported (%s to %s)", from, to),
	}
}

func NewIncompatibleDescriptorOptionsError() *Error {
	return &Error{
		Kind:    KindIncompatibleDescriptorOptions,
		Title:   "Cannot set both densities and widths",
		Message: "only one of densities or widths can be specified",
		Hint:    "Use widths together with sizes, or densities alone.",
	}
}

func NewInvalidImageDensityError(density string) *Error {
	return &Error{
		Kind:    KindInvalidImageDensity,
		Title:   "Invalid pixel density",
		Message: fmt.Sprintf("density %q is not a positive number", density),
	}
}

func NewInvalidImageQualityError(quality string) *Error {
	return &Error{
		Kind:    KindInvalidImageQuality,
		Title:   "Invalid image quality",
		Message: fmt.Sprintf("quality %q must be 1-100 or one of low, mid, high, max", quality),
	}
}

func NewRemoteImageNotAllowedError(src string) *Error {
	return &Error{
		Kind:    KindRemoteImageNotAllowed,
		Title:   "Remote image not allowed",
		Message: fmt.Sprintf("%s does not match any configured domain or remote pattern", src),
		Hint:    "Add the host to image.domains or image.remote_patterns.",
	}
}

func NewImageNotFoundError(src string, err error) *Error {
	return &Error{
		Kind:    KindImageNotFound,
		Title:   "Image not found",
		Message: fmt.Sprintf("could not load %s", src),
		Err:     err,
	}
}

func NewFailedToFetchRemoteImageDimensionsError(src string, err error) *Error {
	return &Error{
		Kind:    KindFailedToFetchRemoteImageDimensions,
		Title:   "Failed to retrieve remote image dimensions",
		Message: fmt.Sprintf("failed to get the dimensions for %s", src),
		Hint:    "Verify the URL is reachable or set width and height manually.",
		Err:     err,
	}
}

func NewNoImageMetadataError(src string, err error) *Error {
	return &Error{
		Kind:    KindNoImageMetadata,
		Title:   "Could not process image metadata",
		Message: fmt.Sprintf("could not read metadata for %s", src),
		Err:     err,
	}
}

func NewImageTooLargeError(pixels, limit int) *Error {
	return &Error{
		Kind:    KindImageTooLarge,
		Title:   "Image exceeds pixel limit",
		Message: fmt.Sprintf("input has %d pixels, limit is %d", pixels, limit),
		Hint:    "Raise image.service.limit_input_pixels or shrink the source image.",
	}
}
