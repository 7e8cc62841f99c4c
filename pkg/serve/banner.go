package serve

import "fmt"

const healthBanner = `
░█▀█░█░█░█▀▀░█░░░▀█▀░█░█░█▀▄░█▀▀
░█░█░█░█░█░█░█░░░░█░░█░█░█▀▄░▀▀█
░▀▀▀░▀▀▀░▀▀▀░▀▀▀░░▀░░▀▀▀░▀░▀░▀▀▀

SYSTEM STATUS: ONLINE
`

const certBanner = `
░█▀█░█▀▀░█░█░█▀▀░▀█▀░█▀▄░█▀▀░█▀▀░█▀▀
░█▀▀░█░█░█░█░▀▀█░░█░░█▀▄░█▀▀░█▀▀░▀▀█
░▀░░░▀▀▀░▀▀▀░▀▀▀░░▀░░▀░▀░▀▀▀░▀▀▀░▀▀▀

H3R3'5 Y0UR C3RT1F1C4T3:
`

// certificatePage renders the /api/ca body.
func certificatePage(cert string) string {
	return fmt.Sprintf("%s%s\n", certBanner, cert)
}
