package conn

import (
	"context"
	"fmt"
	"strings"

	"github.com/rileyhilliard/vmhop/internal/errors"
	"github.com/rileyhilliard/vmhop/internal/profile"
)

// ServerProfiles returns the profiles as of the last load.
func (o *Orchestrator) ServerProfiles() []profile.Profile {
	src := *o.mirror.Load()
	out := make([]profile.Profile, len(src))
	for i, p := range src {
		out[i] = p.Clone()
	}
	return out
}

// LoadProfiles refreshes the ServerProfiles mirror from the store.
func (o *Orchestrator) LoadProfiles(ctx context.Context) error {
	list, err := o.profiles.List(ctx)
	if err != nil {
		o.log.Error("could not load profiles: %v", err)
		return err
	}
	mirror := make([]profile.Profile, len(list))
	for i, p := range list {
		mirror[i] = p.Clone()
	}
	o.mirror.Store(&mirror)
	return nil
}

// AddProfile stores a new profile and, when secretValue is not empty, its
// credential. Names already in use are rejected.
func (o *Orchestrator) AddProfile(ctx context.Context, p profile.Profile, secretValue string) error {
	if err := p.Validate(); err != nil {
		return err
	}

	if _, exists, err := o.profiles.Get(ctx, p.Name); err != nil {
		o.log.Error("could not check for profile %s: %v", p.Name, err)
		return err
	} else if exists {
		return errors.New(errors.ErrProfile,
			fmt.Sprintf("Profile '%s' already exists", p.Name),
			"Pick another name, or use 'vmhop profile update' to change it.")
	}

	if err := o.profiles.Save(ctx, p); err != nil {
		o.log.Error("could not save profile %s: %v", p.Name, err)
		return err
	}
	if secretValue != "" {
		if err := o.secrets.Save(ctx, p.Name, p.Username, secretValue); err != nil {
			o.log.Error("could not save credentials for %s: %v", p.Name, err)
			return err
		}
	}
	o.log.Debug("added profile %s", p)
	return o.LoadProfiles(ctx)
}

// RemoveProfile deletes a profile and, best effort, its credential.
func (o *Orchestrator) RemoveProfile(ctx context.Context, name string) error {
	if err := o.profiles.Delete(ctx, name); err != nil {
		o.log.Error("could not delete profile %s: %v", name, err)
		return err
	}
	if err := o.secrets.Delete(ctx, name); err != nil {
		o.log.Warn("could not delete credentials for %s: %v", name, err)
	}
	o.log.Debug("removed profile %s", name)
	return o.LoadProfiles(ctx)
}

// UpdateProfile replaces the profile called oldName with updated. On a
// rename the credential moves along when transferCredentials is set. A
// cached test follows an address change, and an active connection follows
// the profile.
//
// Steps run in order and stop at the first failure, which is logged.
// Completed steps are not rolled back.
func (o *Orchestrator) UpdateProfile(ctx context.Context, oldName string, updated profile.Profile, transferCredentials bool) bool {
	if err := updated.Validate(); err != nil {
		o.log.Error("invalid profile update for %s: %v", oldName, err)
		return false
	}

	if err := o.gate.Acquire(ctx, 1); err != nil {
		o.log.Error("profile update for %s abandoned: %v", oldName, err)
		return false
	}
	defer o.gate.Release(1)

	old, found, err := o.profiles.Get(ctx, oldName)
	if err != nil {
		o.log.Error("could not read profile %s: %v", oldName, err)
		return false
	}
	if !found {
		o.log.Error("cannot update profile %s: not found", oldName)
		return false
	}

	renamed := !profile.SameName(oldName, updated.Name)
	if renamed {
		if _, taken, err := o.profiles.Get(ctx, updated.Name); err != nil {
			o.log.Error("could not check for profile %s: %v", updated.Name, err)
			return false
		} else if taken {
			o.log.Error("cannot rename %s to %s: name already in use", oldName, updated.Name)
			return false
		}
	}

	if err := o.profiles.Save(ctx, updated); err != nil {
		o.log.Error("could not save profile %s: %v", updated.Name, err)
		return false
	}

	if renamed && transferCredentials {
		if err := o.moveSecret(ctx, oldName, updated); err != nil {
			o.log.Error("could not move credentials from %s to %s: %v", oldName, updated.Name, err)
			return false
		}
	}

	if renamed {
		if err := o.profiles.Delete(ctx, oldName); err != nil {
			o.log.Error("could not delete old profile %s: %v", oldName, err)
			return false
		}
	}

	if !strings.EqualFold(strings.TrimSpace(old.ServerAddress), strings.TrimSpace(updated.ServerAddress)) {
		o.cache.Move(old.ServerAddress, updated.ServerAddress)
	}

	if o.current != nil && profile.SameName(o.current.Name, oldName) {
		next := updated.Clone()
		if next.LastConnected == nil {
			next.LastConnected = o.current.Clone().LastConnected
		}
		o.current = &next
	}
	o.refreshStatus()

	if err := o.LoadProfiles(ctx); err != nil {
		return false
	}
	o.log.Debug("updated profile %s -> %s", oldName, updated)
	return true
}

func (o *Orchestrator) moveSecret(ctx context.Context, from string, to profile.Profile) error {
	v, err := o.secrets.Get(ctx, from)
	if err != nil {
		return err
	}
	if v == "" {
		return nil
	}
	if err := o.secrets.Save(ctx, to.Name, to.Username, v); err != nil {
		return err
	}
	if err := o.secrets.Delete(ctx, from); err != nil {
		o.log.Warn("could not delete old credentials for %s: %v", from, err)
	}
	return nil
}

// stampLastConnected records a successful test in the mirror and, best
// effort, in the store. Profiles that were never saved are left alone. The
// caller holds the gate.
func (o *Orchestrator) stampLastConnected(ctx context.Context, p profile.Profile) {
	at := o.now()

	src := *o.mirror.Load()
	mirror := make([]profile.Profile, len(src))
	copy(mirror, src)
	for i := range mirror {
		if profile.SameName(mirror[i].Name, p.Name) {
			mirror[i] = mirror[i].WithLastConnected(at)
		}
	}
	o.mirror.Store(&mirror)

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	stored, found, err := o.profiles.Get(pctx, p.Name)
	if err != nil {
		o.log.Warn("could not record last connection for %s: %v", p.Name, err)
		return
	}
	if !found {
		return
	}
	if err := o.profiles.Save(pctx, stored.WithLastConnected(at)); err != nil {
		o.log.Warn("could not record last connection for %s: %v", p.Name, err)
	}
}
