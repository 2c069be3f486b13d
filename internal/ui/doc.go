// Package ui holds the color themes shared by the interactive client and
// the server console. Themes honor NO_COLOR.
package ui
