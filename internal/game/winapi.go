package game

import "golang.org/x/sys/windows"

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	procMapVirtualKeyW   = user32.NewProc("MapVirtualKeyW")
	procGetAsyncKeyState = user32.NewProc("GetAsyncKeyState")
)

// mapVirtualKey wraps user32 MapVirtualKeyW, which lxn/win does not bind.
func mapVirtualKey(code, mapType uint32) uint32 {
	ret, _, _ := procMapVirtualKeyW.Call(uintptr(code), uintptr(mapType))
	return uint32(ret)
}

// getAsyncKeyState wraps user32 GetAsyncKeyState, which lxn/win does not bind.
func getAsyncKeyState(vKey int32) int16 {
	ret, _, _ := procGetAsyncKeyState.Call(uintptr(vKey))
	return int16(ret)
}
