// Package domain contains the core conversion concepts: request options,
// letterhead brands, the render-engine capability and the error taxonomy.
// It stays free of transport (HTTP) and infrastructure (Chrome, Redis) code.
package domain
