package domain

// Container represents a running (or exited) container backing a deployment.
type Container struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Image     string `json:"image"`
	Status    string `json:"status"`
	State     string `json:"state"` // running, exited, etc.
	IPAddress string `json:"ip_address,omitempty"`
	Port      int    `json:"port,omitempty"` // published host port
}

// LaunchSpec is everything the runtime needs to start an application
// container: the image, the container port the app binds, the host port it
// is published on (all interfaces), plus extra environment. PORT is always
// injected so the supervised process knows its authoritative port.
type LaunchSpec struct {
	Image    string
	Name     string
	Port     int
	HostPort int
	Env      map[string]string
}

// Deployment ties a built image to the container running it.
type Deployment struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Image     string `json:"image"`
	Container string `json:"container_id"`
	Port      int    `json:"port"`
}
