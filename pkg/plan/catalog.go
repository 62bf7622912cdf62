package plan

import (
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action/base"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action/common"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action/linux"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action/macos"
)

// catalog is the one table mapping every action kind to its variant. The
// action set is closed: adding a variant means adding a row here, and a
// receipt naming a kind outside this table is refused as a whole.
var catalog = map[string]func() action.Action{
	base.KindCreateDirectory:            func() action.Action { return &base.CreateDirectory{} },
	base.KindCreateFile:                 func() action.Action { return &base.CreateFile{} },
	base.KindCreateOrInsertIntoFile:     func() action.Action { return &base.CreateOrInsertIntoFile{} },
	base.KindCreateGroup:                func() action.Action { return &base.CreateGroup{} },
	base.KindCreateUser:                 func() action.Action { return &base.CreateUser{} },
	base.KindAddUserToGroup:             func() action.Action { return &base.AddUserToGroup{} },
	base.KindFetchAndUnpack:             func() action.Action { return &base.FetchAndUnpack{} },
	base.KindMoveUnpackedNix:            func() action.Action { return &base.MoveUnpackedNix{} },
	base.KindRemoveDirectory:            func() action.Action { return &base.RemoveDirectory{} },
	base.KindSetupDefaultProfile:        func() action.Action { return &base.SetupDefaultProfile{} },
	common.KindCreateNixTree:            func() action.Action { return &common.CreateNixTree{} },
	common.KindCreateUsersAndGroups:     func() action.Action { return &common.CreateUsersAndGroups{} },
	common.KindProvisionNix:             func() action.Action { return &common.ProvisionNix{} },
	common.KindConfigureNix:             func() action.Action { return &common.ConfigureNix{} },
	common.KindPlaceNixConfiguration:    func() action.Action { return &common.PlaceNixConfiguration{} },
	common.KindConfigureShellProfile:    func() action.Action { return &common.ConfigureShellProfile{} },
	common.KindConfigureInitService:     func() action.Action { return &common.ConfigureInitService{} },
	linux.KindStartSystemdUnit:          func() action.Action { return &linux.StartSystemdUnit{} },
	linux.KindSystemctlDaemonReload:     func() action.Action { return &linux.SystemctlDaemonReload{} },
	macos.KindCreateSyntheticObjects:    func() action.Action { return &macos.CreateSyntheticObjects{} },
	macos.KindCreateApfsVolume:          func() action.Action { return &macos.CreateApfsVolume{} },
	macos.KindCreateFstabEntry:          func() action.Action { return &macos.CreateFstabEntry{} },
	macos.KindEnableOwnership:           func() action.Action { return &macos.EnableOwnership{} },
	macos.KindUnmountApfsVolume:         func() action.Action { return &macos.UnmountApfsVolume{} },
	macos.KindBootstrapLaunchctlService: func() action.Action { return &macos.BootstrapLaunchctlService{} },
	macos.KindCreateNixVolume:           func() action.Action { return &macos.CreateNixVolume{} },
}

func init() {
	action.SetCatalog(catalog)
}
