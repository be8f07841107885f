// Package usbid resolves vendor and product IDs to names using the usb.ids
// database distributed with most Linux systems.
//
// The database is read through an afero.Fs, so a profile can be checked
// against a bundled copy or an in-memory fixture as well as the host's
// copy:
//
//	db := usbid.New()
//	if path, err := db.Load(afero.NewOsFs()); err == nil {
//		fmt.Println(path, db.Describe(0x0483, 0x5740))
//	}
//
// Lookups on a database that failed to load return empty names. All
// methods are safe for concurrent use.
package usbid
