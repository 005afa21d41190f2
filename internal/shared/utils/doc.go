// Package utils validates client supplied artwork requests.
package utils
